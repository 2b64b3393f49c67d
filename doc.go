/*
Package pacbox hosts pacman package repositories.

Packages are tracked in a box, organized in sections (a branch, a repository
and an architecture). The daemon, pacboxd, exports each section as a
repository database and a set of links to the package files of the pool.
*/
package pacbox
