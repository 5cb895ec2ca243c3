// Package thingmodel resolves W3C Web of Things Thing Models into effective
// models ready for code generation.
//
// A Thing Model document may extend base models ("tm:extends") and mount other
// models as features ("tm:submodel"). A Resolver fetches a root document and
// everything it links to through an injected Fetcher, and flattens the result
// into an Effective model: derived affordances override inherited ones by name,
// and submodels become named features. Affordance-level "tm:ref" pointers and
// "{{NAME}}" placeholders are applied along the way.
//
// Resolution is synchronous. The Fetcher is its only blocking call, and any
// fetch failure aborts the resolution with a *FetchError naming the document.
// Callers that want to fetch concurrently warm a cache beforehand (see package
// fetch).
//
// The twinpath subpackage addresses the properties of an effective model
// inside a digital twin, and typeresolve assigns named types to its schemas.
package thingmodel
