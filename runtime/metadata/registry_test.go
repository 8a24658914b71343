package metadata

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryPosts struct{}

type registryComments struct{}

func TestRegister_Generic(t *testing.T) {
	reg := NewRegistry()
	target := TypeOf[registryPosts]()

	Register(reg, ControllerRecord{Target: target, Route: "/posts"})
	Register(reg, ActionRecord{Target: target, Method: "List", Verb: VerbGet, Route: Path("")})
	Register(reg, ParamRecord{Target: target, Method: "List", Kind: ParamQuery, Name: "page"})
	Register(reg, ResponseHandlerRecord{Target: target, Method: "List", Kind: ResponseSuccessCode, Value: 200})
	Register(reg, UseRecord{Target: target, Middleware: Use("noop", nil)})
	Register(reg, MiddlewareRecord{Middleware: Use("global", nil), Global: true})

	all := reg.All()
	assert.Len(t, all.Controllers, 1)
	assert.Len(t, all.Actions, 1)
	assert.Len(t, all.Params, 1)
	assert.Len(t, all.ResponseHandlers, 1)
	assert.Len(t, all.Uses, 1)
	assert.Len(t, all.Middlewares, 1)
}

func TestRegistry_KeepsMalformedRecords(t *testing.T) {
	reg := NewRegistry()
	// No validation at registration time
	reg.RegisterAction(ActionRecord{})
	reg.RegisterParam(ParamRecord{Index: -1})

	all := reg.All()
	assert.Len(t, all.Actions, 1)
	assert.Len(t, all.Params, 1)
}

func TestRegistry_QueryByTarget(t *testing.T) {
	reg := NewRegistry()
	posts := TypeOf[registryPosts]()
	comments := TypeOf[registryComments]()

	reg.RegisterController(ControllerRecord{Target: posts, Route: "/posts"})
	reg.RegisterController(ControllerRecord{Target: comments, Route: "/comments"})
	reg.RegisterAction(ActionRecord{Target: posts, Method: "List"})
	reg.RegisterAction(ActionRecord{Target: posts, Method: "Show"})
	reg.RegisterAction(ActionRecord{Target: comments, Method: "List"})
	reg.RegisterParam(ParamRecord{Target: posts, Method: "Show", Kind: ParamPath, Name: "id"})
	reg.RegisterUse(UseRecord{Target: posts, Middleware: Use("controller", nil)})
	reg.RegisterUse(UseRecord{Target: posts, Method: "Show", Middleware: Use("action", nil)})

	t.Run("whole target", func(t *testing.T) {
		got := reg.QueryByTarget(posts)
		assert.Len(t, got.Controllers, 1)
		assert.Len(t, got.Actions, 2)
		assert.Len(t, got.Params, 1)
		require.Len(t, got.Uses, 1)
		assert.Equal(t, "controller", got.Uses[0].Middleware.Name)
	})

	t.Run("single method", func(t *testing.T) {
		got := reg.QueryByTarget(posts, "Show")
		require.Len(t, got.Actions, 1)
		assert.Equal(t, "Show", got.Actions[0].Method)
		assert.Len(t, got.Params, 1)
		require.Len(t, got.Uses, 1)
		assert.Equal(t, "action", got.Uses[0].Middleware.Name)
	})

	t.Run("unknown target", func(t *testing.T) {
		got := reg.QueryByTarget(TypeOf[int]())
		assert.Empty(t, got.Controllers)
		assert.Empty(t, got.Actions)
	})
}

func TestRegistry_AllReturnsCopies(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterController(ControllerRecord{Target: TypeOf[registryPosts](), Route: "/posts"})

	first := reg.All()
	first.Controllers[0].Route = "/modified"

	second := reg.All()
	assert.Equal(t, "/posts", second.Controllers[0].Route)
}

func TestRegistry_Reset(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterController(ControllerRecord{Target: TypeOf[registryPosts]()})
	reg.RegisterMiddleware(MiddlewareRecord{Global: true})

	reg.Reset()

	assert.Empty(t, reg.Controllers())
	assert.Empty(t, reg.Middlewares())
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	reg := NewRegistry()
	target := TypeOf[registryPosts]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.RegisterParam(ParamRecord{Target: target, Method: "List", Index: i})
			_ = reg.All()
		}(i)
	}
	wg.Wait()

	assert.Len(t, reg.All().Params, 50)
}
