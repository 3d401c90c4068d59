package pdu

import "errors"

var (
	errShortHeader    = errors.New("pdu: buffer shorter than EtherCAT header")
	errShortPduHeader = errors.New("pdu: buffer shorter than PDU header")
)
