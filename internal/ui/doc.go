// Package ui provides terminal UI components for the deskpanel-cfg CLI.
//
// Output follows a "run once and exit" pattern: commands print a header,
// progress and a result box and never wait for input, except for the y/N
// prompt Confirm shows before destructive storage operations.
//
// # Components
//
//   - Header: command banner with the operation name and parameters
//   - Progress: step list and progress bar
//   - Result: success, warning and failure boxes, with troubleshooting tips
//   - Panel: titled box for listings and image header dumps
//
// # Deployment Output
//
// A deployment run emits deploy.Event values on a channel. Two consumers
// render them:
//
//   - DeployRunner prints one plain line per step, for pipes, CI logs and
//     --plain
//   - RunLive drives a Bubble Tea program with a spinner on the active
//     step; ctrl+c cancels the run and waits for cleanup
//
// Both end with DeployResultBox, which names the failed step and the
// troubleshooting hint for its error.
//
// # Logging Integration
//
// zap logging is silent unless DESKPANEL_LOG_LEVEL (or --log-level) is set,
// so the curated UI output is not interleaved with log lines. Logs go to
// stderr.
package ui
