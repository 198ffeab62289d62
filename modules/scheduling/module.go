package scheduling

import (
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence"
	"github.com/fieldcrew/mobsched/modules/scheduling/presentation/controllers"
	"github.com/fieldcrew/mobsched/modules/scheduling/services"
	"github.com/fieldcrew/mobsched/pkg/application"
	"github.com/fieldcrew/mobsched/pkg/configuration"
)

type ModuleOptions struct {
	Scheduling    configuration.SchedulingOptions
	RedisURL      string
	TenantHeader  string
	DefaultTenant uuid.UUID
	// Sessions replaces the store selected by Scheduling.WorkflowStore.
	Sessions services.SessionStore
	// Outbox records events in scheduling_outbox instead of publishing them
	// directly; a relay must then deliver them.
	Outbox bool
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	opts := m.options
	app.Migrations().RegisterSchema(m.Name(), persistence.SchemaFS, persistence.SchemaDir)

	policy, err := timewindow.ParseClockInPolicy(opts.Scheduling.ClockInPolicy)
	if err != nil {
		return errors.Wrap(err, "scheduling clock-in policy")
	}
	sessions, err := m.sessionStore()
	if err != nil {
		return err
	}

	var events services.EventRecorder
	if opts.Outbox {
		events = persistence.NewOutboxRecorder()
	}

	mobilizations := persistence.NewMobilizationRepository()
	jobs := persistence.NewJobRepository()
	timesheets := persistence.NewTimesheetRepository()

	scheduling := services.NewSchedulingService(services.SchedulingRepositories{
		Mobilizations: mobilizations,
		Assignments:   persistence.NewAssignmentRepository(),
		Crews:         persistence.NewCrewRepository(),
		Jobs:          jobs,
		Timesheets:    timesheets,
	}, app.EventPublisher(), services.SchedulingOptions{
		CheckBatchOverlaps: opts.Scheduling.CheckBatchOverlaps,
		Events:             events,
	})
	app.RegisterServices(
		scheduling,
		services.NewWorkflowService(sessions, scheduling, scheduling, services.WorkflowOptions{
			TTL:         opts.Scheduling.WorkflowTTL,
			SaveTimeout: opts.Scheduling.SaveTimeout,
		}),
		services.NewTimesheetService(timesheets, jobs, mobilizations, app.EventPublisher(), services.TimesheetOptions{
			ClockInPolicy: policy,
			Events:        events,
		}),
	)

	app.RegisterControllers(
		controllers.NewSchedulingAPIController(app, controllers.APIOptions{
			TenantHeader:  opts.TenantHeader,
			DefaultTenant: opts.DefaultTenant,
		}),
	)
	return nil
}

func (m *Module) sessionStore() (services.SessionStore, error) {
	opts := m.options
	if opts.Sessions != nil {
		return opts.Sessions, nil
	}
	switch opts.Scheduling.WorkflowStore {
	case "", configuration.WorkflowStoreMemory:
		return persistence.NewMemorySessionStore(), nil
	case configuration.WorkflowStoreRedis:
		if opts.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis workflow store")
		}
		return persistence.NewRedisSessionStore(persistence.NewRedisClient(opts.RedisURL)), nil
	default:
		return nil, errors.Errorf("unsupported workflow store %q", opts.Scheduling.WorkflowStore)
	}
}

func (m *Module) Name() string {
	return "scheduling"
}
