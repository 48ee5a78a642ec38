// Package logger wraps zap for the installer and compiler binaries:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - a runtime-adjustable level with string parsing,
//   - printf and key-value helpers (Infof, ErrorKV, etc.).
//
// Services take a context and log through the logger stored in it, so a
// caller can name or enrich the logger once and every nested step inherits it.
package logger
