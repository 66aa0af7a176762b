package integrators

// Euler is the explicit (forward) Euler method. It is the only scheme the
// kernel uses: fixed step, no error control.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

// Step advances x in place by dt along xdot.
func (e *Euler) Step(x, xdot []float64, dt float64) {
	n := len(x)
	if len(xdot) < n {
		n = len(xdot)
	}
	for i := 0; i < n; i++ {
		x[i] += dt * xdot[i]
	}
}
