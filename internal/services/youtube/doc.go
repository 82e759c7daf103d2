// Package youtube uploads Shorts through the YouTube Data API and reads
// their public statistics.
//
// Authentication uses a long-lived OAuth2 refresh token exchanged by
// golang.org/x/oauth2; access tokens are cached and renewed transparently.
// Uploads use the resumable protocol: one session is opened per video and
// the file is sent in fixed-size chunks. A 308 response carries the Range the
// server has persisted, and after a dropped connection or 5xx the client asks
// the session for its offset and resumes from there.
package youtube
