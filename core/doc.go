// Package core is the backend-provider composition layer of the agent:
// settings scopes, capabilities, providers, injectors and the
// Profile/Session unit-of-work lifecycle. Backends and credential services
// register into core; core never imports them.
package core
