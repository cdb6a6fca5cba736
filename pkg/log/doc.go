// Package log provides the protocol event trace of the emulated cluster.
//
// This is separate from operational logging (slog). The trace records what
// clients and harnesses did to the server in a machine-readable form:
// frames on the data plane, commands and their status, authentication state
// changes and fault injections.
//
// # Basic Usage
//
//	console := log.NewSlogAdapter(slog.Default())
//	file, err := log.NewFileLogger("/tmp/cbmock.mlog")
//	if err != nil {
//		return err
//	}
//	defer file.Close()
//
//	trace := log.NewMultiLogger(console, file)
//	c, err := cluster.New(cfg, cluster.WithProtocolLogger(trace))
//	d := control.NewDispatcher(control.WithProtocolLogger(trace))
//
// # File Format
//
// Trace files are a stream of CBOR-encoded Event values with integer keys.
// Use NewDecoder to read them back.
package log
