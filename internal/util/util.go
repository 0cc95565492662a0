package util

import (
	"path"
	"strings"
)

// ComputeBaseHref calculates the relative path to the site root
// so that CSS/JS links work correctly for pages at any depth.
// Slugs are always slash separated, so a page with slug "posts/a/b"
// gets a BaseHref of "../../".
func ComputeBaseHref(slug string) string {
	dir := path.Dir(strings.TrimPrefix(slug, "/"))
	if dir == "." || dir == "/" {
		return ""
	}
	depth := strings.Count(dir, "/") + 1
	return strings.Repeat("../", depth)
}

// MaxWorkers returns the default worker count for a machine with the given
// number of cores: one core is left to the producer, never less than one.
func MaxWorkers(cores int) int {
	if cores-1 < 1 {
		return 1
	}
	return cores - 1
}
