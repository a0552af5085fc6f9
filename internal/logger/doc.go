// Package logger wraps zap for modsync:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and switching,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Pipeline stages receive a context and log through the logger it carries,
// so every line is tagged with the stage that produced it.
package logger
