// Package appicon builds mobile application icons from a source logo.
//
// A Recipe describes one build: the logo is resized, centered on a square
// background canvas (black unless configured otherwise) and written as a PNG.
// Recipes may instead emit the resized logo alone or copy a pre-made file.
// Engine.Run wraps a build with a fallback copy so an asset pipeline always
// ends up with some icon at the output path. The package works entirely on
// local files; no external image tools are required.
package appicon
