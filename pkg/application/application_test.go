package application

import (
	"net/http"
	"testing"
	"testing/fstest"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	key string
}

func (c *fakeController) Key() string { return c.key }

func (c *fakeController) Register(r *mux.Router) {
	r.HandleFunc(c.key, func(w http.ResponseWriter, r *http.Request) {}).Methods(http.MethodGet)
}

type crewLookup struct{}

func TestApplication_ControllersSortedAndDeduplicated(t *testing.T) {
	app := New(&ApplicationOptions{})
	app.RegisterControllers(&fakeController{key: "/b"}, &fakeController{key: "/a"}, &fakeController{key: "/b"})

	controllers := app.Controllers()
	require.Len(t, controllers, 2)
	require.Equal(t, "/a", controllers[0].Key())
	require.Equal(t, "/b", controllers[1].Key())
}

func TestApplication_ServiceLookup(t *testing.T) {
	app := New(&ApplicationOptions{})
	svc := &crewLookup{}
	app.RegisterServices(svc)

	require.Same(t, svc, app.Service(crewLookup{}).(*crewLookup))
	require.Panics(t, func() { app.Service(fakeController{}) })
}

func TestMigrationRegistry_Sources(t *testing.T) {
	app := New(&ApplicationOptions{})
	app.Migrations().RegisterSchema("scheduling", fstest.MapFS{"schema/001.sql": &fstest.MapFile{}}, "schema")

	sources := app.Migrations().Sources()
	require.Len(t, sources, 1)
	require.Equal(t, "scheduling", sources[0].Module)

	sources[0].Module = "mutated"
	require.Equal(t, "scheduling", app.Migrations().Sources()[0].Module)
}
