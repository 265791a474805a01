// Package roles implements the role API: create, read, patch, trash,
// restore and delete roles, and manage their members.
//
// Routes (ids are integers; other values do not match and yield 404):
//
//	POST   /api/roles
//	GET    /api/roles/{id}              ?trashed=true includes trashed roles
//	PATCH  /api/roles/{id}
//	POST   /api/roles/{id}/trash
//	POST   /api/roles/{id}/restore
//	DELETE /api/roles/{id}/delete
//	GET    /api/roles/{id}/members
//	POST   /api/roles/{id}/members/add/{userId}
//
// Every mutation returns the role as re-read after the change. Missing roles
// and users produce {"error": "Role with id N not found"} and
// {"error": "User with id N not found"} with status 404.
//
// PATCH bodies decode into RolePatch, whose Optional fields record presence,
// so only supplied fields change:
//
//	{"name": "Editors"}
package roles
