// Package viz renders simulation runs in the terminal.
//
// [Model] is a Bubble Tea program that owns one kernel.Context and advances
// it a configurable number of steps per frame, plotting the selected output
// with asciigraph. [Plot] and [Summary] serve the non-interactive commands.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	N     - Single step while paused
//	+/-   - Double/halve steps per frame
//	Tab   - Cycle plotted variable
//	R     - Terminate and restart the run
//	?     - Show help overlay
//	Q     - Terminate and quit
package viz
