// Package common holds what the mail tools share: argument names, the
// instrumentation wrapper, and outcome reporting from handlers.
package common
