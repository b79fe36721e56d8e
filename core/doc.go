// Package core contains the 3-D Secure authentication domain: the
// authentication context and its state machine, version negotiation, response
// normalization, the error taxonomy and the orchestrating Service. Transports,
// stores and challenge clients plug in through the contracts declared here;
// core must not depend on any of their implementations.
package core
