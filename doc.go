// Package packstack resolves the effective resources of a multi-loader mod
// project.
//
// A project keeps its textures, models, lang files and data under layered
// directory roots. Shared asset packs live under versions/shared and may
// inherit from one another. Every game version binds to one pack and may add
// a version override, and each enabled loader of that version may add a
// loader override on top:
//
//	versions/
//	  shared/v1/{config.yml,assets,data}   pack v1
//	  shared/v2/{config.yml,assets,data}   pack v2, inherits v1
//	  1_21_1/config.yml                    binds 1.21.1 to v2
//	  1_21_1/{assets,data}                 version override
//	  1_21_1/fabric/{assets,data}          loader override
//
// Resolution merges the layers root-most pack first and the loader override
// last. The later layer wins per resource key; nothing is merged inside a
// file.
//
// Basic usage:
//
//	p, _ := packstack.Open(".", packstack.WithConcurrency(8))
//
//	// Ordered layers for a (version, loader) pair
//	plan, _ := p.Plan("1.21.1", "fabric")
//	fmt.Println(plan.LayerIDs()) // [pack:v1 pack:v2 version:1.21.1 loader:1.21.1/fabric]
//
//	// Effective resources, cached until a layer changes
//	set, _ := p.Resolve(ctx, "1.21.1", "fabric")
//	r, _ := set.Get("assets/ruby/lang/en_us.json")
//	fmt.Println(r.Origin, len(r.Content))
//
//	// Which layer supplies one key, without a full merge
//	r, ok, _ := p.Which("1.21.1", "neoforge", "assets/ruby/models/item/ruby.json")
//
//	// Materialise a pair as a zip with a generated pack.mcmeta
//	p.Export(ctx, "1.21.1", "fabric", osfs.New("build"), "ruby.zip",
//	    packstack.ExportOptions{Format: packstack.ExportZip})
//
// The lower level pieces (PackGraph, Planner, Merger, Cache) can be used on
// their own when descriptors come from somewhere other than config.yml files.
package packstack
