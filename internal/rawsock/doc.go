// Package rawsock probes whether the process can open raw link-layer sockets, the transport an EtherCAT
// engine needs to reach the segment.
package rawsock
