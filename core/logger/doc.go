// Package logger sets up the structured application log for rsh.
package logger
