// Package master implements the orchestration core of an EtherCAT master session.
//
// A [Session] owns one engine master handle bound to a network interface, the wire loop running on a
// background task, the single group of enumerated devices and a fixed-capacity process-data image shared
// with the application. The group moves through PRE-OP, SAFE-OP and OP with [Session.RequestState]; once
// in OP the application drives the control loop with [Session.CyclicExchange]:
//
//	drv := sim.NewDriver() // or any engine.Driver
//	s := master.NewSession(drv)
//
//	cfg, err := master.NewConfig("eth0", master.WithPDURetries(2))
//	if err != nil {
//	    return err
//	}
//	if err := s.Initialize(cfg); err != nil {
//	    return err
//	}
//	defer s.Shutdown()
//
//	_ = s.RequestState(master.SafeOpState)
//	_ = s.RequestState(master.OpState)
//
//	for range ticker.C {
//	    wkc, err := s.CyclicExchange()
//	    // ...
//	}
//
// The process-data image is laid out as outputs first, inputs following at [Session.OutputSize]. Its
// address returned by [Session.ProcessDataPointer] is stable until [Session.Shutdown].
//
// Every failure is returned to the caller and its text is also stored in the session's diagnostics
// channel, see [diag.Channel].
//
// [Session.Scan] discovers the devices of a segment through an isolated engine handle and is refused
// while a session is initialized.
package master
