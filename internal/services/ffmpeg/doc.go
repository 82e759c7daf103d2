// Package ffmpeg composes short vertical videos by overlaying script text on
// a background still or clip.
//
// The client builds a single ffmpeg invocation per composition: the
// background input (looped image, looped clip, or a solid colour when the
// asset is missing), a scale/pad chain to the target frame, and one drawtext
// filter per overlay line chosen by the template. Runs are bounded by the
// configured timeout; a deadline overrun is reported as services.ErrTimeout
// and any other failure as services.ErrExternalTool with the tail of ffmpeg's
// stderr attached for the render log.
package ffmpeg
