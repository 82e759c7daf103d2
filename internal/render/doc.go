// Package render owns the two video stages of the pipeline.
//
// Admission creates exactly one PENDING render per approved script once its
// review item (if any) is approved; the store's unique script_id constraint
// makes repeated or concurrent admission a no-op. The render stage claims
// each PENDING render, picks a background and template from an injected
// random source, composes the video with ffmpeg and publishes the artifact
// to the object store before marking the render COMPLETED and the story
// RENDERED. Failures mark only the render FAILED; retry is an operator
// decision.
package render
