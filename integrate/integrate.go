/*package integrate evaluates definite integrals of scalar functions with
fixed-step Newton-Cotes rules.
*/
package integrate

// Rect integrates f over [a, b] using the midpoint rule with n subintervals.
func Rect(a, b float64, n int, f func(float64) float64) float64 {
	if n <= 0 { panic("Rect requires a positive number of subintervals.") }

	h := (b - a) / float64(n)
	hh := 0.5 * h

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += f(a + float64(i)*h + hh)
	}
	return sum * h
}

// Trap integrates f over [a, b] using the trapezoid rule with n subintervals.
func Trap(a, b float64, n int, f func(float64) float64) float64 {
	if n <= 0 { panic("Trap requires a positive number of subintervals.") }

	h := (b - a) / float64(n)

	sum := 0.5 * (f(a) + f(b))
	for i := 1; i < n; i++ {
		sum += f(a + float64(i)*h)
	}
	return sum * h
}

// Cumulative fills out with the running midpoint-rule integral of f over the
// points xs, so that out[i] approximates the integral from xs[0] to xs[i].
// Each interval [xs[i-1], xs[i]] is split into n subintervals.
func Cumulative(xs []float64, n int, f func(float64) float64, out []float64) {
	if len(out) != len(xs) {
		panic("Cumulative requires len(out) == len(xs).")
	}
	if len(xs) == 0 { return }

	out[0] = 0
	for i := 1; i < len(xs); i++ {
		out[i] = out[i-1] + Rect(xs[i-1], xs[i], n, f)
	}
}
