package metadata

import (
	"regexp"
	"strings"
)

// AppendBaseRoute composes a base route with an action route. Literal routes
// are concatenated; a pattern route is anchored and bounded behind the
// escaped base, with an optional trailing slash.
func AppendBaseRoute(base string, route Route) Route {
	prefix := base
	if base != "" && !strings.Contains(base, "/") {
		prefix = "/" + base
	}

	if !route.IsPattern() {
		return Path(prefix + route.Path)
	}
	if base == "" {
		return route
	}

	src := route.Pattern.String()
	src = strings.TrimPrefix(src, "^")
	src = strings.TrimSuffix(src, "$")
	src = strings.TrimSuffix(src, "/?")
	return Regexp(regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + src + "/?$"))
}

// fullRoute returns the effective route of an action under its controller
func fullRoute(controllerRoute string, route Route) Route {
	if route.IsPattern() {
		if controllerRoute != "" {
			return AppendBaseRoute(controllerRoute, route)
		}
		return route
	}
	return Path(controllerRoute + route.Path)
}
