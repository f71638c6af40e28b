// Package roast maps and tabulates columnar datasets stored in .roast
// containers.
//
// A container is a zip archive of named objects: trees (columnar tables
// stored as Parquet), histograms, entry lists and a snapshot of the settings
// that produced it. roast applies mapper operations to the trees of a
// container and writes the results, together with the settings in effect,
// to a new container, so every step of an analysis can be reproduced from
// its output.
//
// # Mapper operations
//
// A mapper string is a ';' separated list of operations:
//
//	copy(events, pt:eta >> skim, pt > 20)   copy selected columns and rows
//	draw(events, pt >> h_pt(100,0,200))     fill a histogram
//	treemap(events, ^debug*)                run a registered selector
//
// Selectors are Go types registered by name:
//
//	func init() {
//	    mapper.Register("myselector", func() mapper.Selector {
//	        return mapper.NewTreeMapper(setup, process)
//	    })
//	}
//
// # Command line
//
//	roast map-single 'copy(events, pt:eta >> skim)' out.roast run.roast
//	roast map-multi 'treemap(events)' _skim 'data/run*.roast'
//	roast reduce 'copy(events)' all.roast run1.roast run2.roast
//	roast tabulate 'run*.roast/events' 'pt:eta >> json' 'pt > 20'
//	roast filter-multi -e 'pt > 20' _sel run1.roast/events run2.roast/events
//	roast settings -f yaml out.roast
//
// # Key Packages
//
//	pkg/tree        - containers, trees, chains and entry lists
//	pkg/formula     - expressions over tree columns
//	pkg/mapper      - mapper strings, selectors and friend trees
//	pkg/tabulate    - TSV, JSON and Avro record output
//	pkg/hist        - one-dimensional histograms
//	pkg/settings    - hierarchical key/value settings
//	pkg/config      - typed configuration read from settings
//	pkg/compression - compressed output streams
//	pkg/errors      - structured error handling
//	pkg/logger      - structured logging
//	pkg/metrics     - Prometheus metrics
//	internal/pipeline - map-single, map-multi, reduce and filter-multi
package roast
