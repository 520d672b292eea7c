package race

// measurementQueue holds raw stop timestamps reported by the station that are
// not yet attributed to a runner. Values keep arrival order and may repeat;
// remove takes out a single occurrence so a measurement is consumed by at
// most one assignment. All access happens under the Manager's mutex.
type measurementQueue struct {
	values []int64
}

func (q *measurementQueue) append(t int64) {
	q.values = append(q.values, t)
}

func (q *measurementQueue) contains(t int64) bool {
	for _, v := range q.values {
		if v == t {
			return true
		}
	}
	return false
}

// remove deletes the first occurrence of t, reporting whether one was found.
func (q *measurementQueue) remove(t int64) bool {
	for i, v := range q.values {
		if v == t {
			q.values = append(q.values[:i], q.values[i+1:]...)
			return true
		}
	}
	return false
}

func (q *measurementQueue) clear() {
	q.values = nil
}

func (q *measurementQueue) snapshot() []int64 {
	out := make([]int64, len(q.values))
	copy(out, q.values)
	return out
}
