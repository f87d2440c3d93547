// Package actuator moves the physical valve in response to decoded commands.
//
// Two implementations exist: Echo, which simulates a valve that reaches the
// commanded state immediately, and Modbus, which drives a relay coil and an
// optional position holding register through a Modbus TCP or RTU slave.
package actuator
