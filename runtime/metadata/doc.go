// Package metadata holds the declarative description of controllers and
// turns it into an executable action graph.
//
// # Overview
//
// Application code declares controllers, actions, parameters, response
// policies and middleware against a Registry. Declarations are plain records;
// nothing is validated until a Builder materializes them:
//
//	reg := metadata.NewRegistry()
//	users := reg.Controller(metadata.TypeOf[UserController](), "/users", metadata.JSON())
//	users.Get("/:id", "Show").
//		Params(metadata.PathParam("id", metadata.Number)).
//		OnUndefined(http.StatusNotFound)
//
//	controllers := metadata.NewBuilder(reg, metadata.BuilderOptions{}).Build()
//
// # Identity
//
// Controllers and middleware types are identified by their reflect.Type.
// Action methods are looked up on the pointer type, so pointer receivers work.
//
// # Inheritance
//
// A controller inherits the actions declared on the types listed with Extends.
// Embedding the ancestor struct promotes its methods so they can be invoked on
// the controller instance. When a method is declared on both the controller
// and an ancestor, the nearest declaration wins.
//
// # Routes
//
// Literal routes compose by concatenation ("/users" + "/:id"). Pattern routes
// are anchored behind the escaped controller prefix, see AppendBaseRoute.
package metadata
