// Package models provides built-in model-exchange backends.
//
// Every model implements fmi.Model and hands out instances that enforce the
// model-exchange call sequence: a call in the wrong mode returns fmi.Error
// and reports the problem through the logger callback. Value reference 0 is
// always the simulation time.
//
//	ball := models.NewBouncingBall()
//	ctx, err := kernel.Initialize(ball, kernel.Experiment{StopTime: 3, StepSize: 0.01})
package models
