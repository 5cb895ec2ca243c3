/*
Package twinpath implements the addressing algebra of digital-twin resource
paths: attributes, features, desired and actual properties, property
categories and property sub-paths.

A [Path] is a single tagged value: an ordered sequence of typed segments that
follows exactly one [Shape]. The shapes, and their canonical text, are:

	/{category}
	/{category}/{propertyId}[/{subpath...}]
	{propertyId}[/{subpath...}]                          (relative suffix)
	/attributes
	/attributes/{category}
	/attributes/{category}/{propertyId}[/{subpath...}]
	/properties                                          (or /desiredProperties)
	/properties/{category}
	/properties/{category}/{propertyId}[/{subpath...}]
	/features/{featureId}
	/features/{featureId}/properties
	/features/{featureId}/properties/{category}
	/features/{featureId}/properties/{category}/{propertyId}[/{subpath...}]

For every Path p, Parse (or ParseSuffix, for the relative shape) of p.String()
yields a Path equal to p.

[Compose] combines a coarser path with a finer suffix, for example a category
with a property:

	status := twinpath.MustNew(twinpath.Category("status"))
	speed := twinpath.MustNew(twinpath.Property("speed"))
	twinpath.MustCompose(status, speed).String() // "/status/speed"
*/
package twinpath
