// Package pid provides the closed-loop position controller used by the lift
// and mobile-goal-lift.
//
// A [Controller] drives a measured position toward a target held in a
// [Target] store:
//
//   - [Sensor]: returns the current position (encoder counts scaled to 0..127)
//   - [Actuator]: accepts a signed, saturated drive command
//   - [Target]: mutex-guarded, clamped, last-write-wins setpoint
//
// # Usage
//
//	ctrl, err := pid.New(pid.Config{
//		Gains:            pid.Gains{Kp: 1.2, Ki: 0.05, Kd: 4},
//		MaxIntegralError: 40,
//		Min:              0,
//		Max:              127,
//		Saturation:       127,
//	}, encoder, lift)
//	ctrl.SetTarget(90)
//	// ctrl.Step is called once per polling period by the control task
//
// # Thread Safety
//
// Step must only be called from one goroutine. SetTarget and Target may be
// called from any goroutine.
package pid
