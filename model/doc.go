// Package model contains the authoring representation of approval
// processes: a versioned Definition aggregating a form schema (`form`
// sub-package) and an ordered flow of nodes (`flow` sub-package).
//
// Definitions are typically authored as YAML or JSON documents and stored
// by the definition service; published versions are immutable and copied
// into every instance compiled against them.
package model
