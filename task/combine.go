package task

// AwaitAll awaits every task and returns their values in task order.
// The error is the first failure by task order, with the remaining
// tasks still awaited before AwaitAll returns.
func AwaitAll(co *Coro, tasks ...*Task) ([]any, error) {
	values := make([]any, len(tasks))
	var firstErr error
	for i, tk := range tasks {
		v, err := co.Await(tk)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		values[i] = v
	}
	return values, firstErr
}
