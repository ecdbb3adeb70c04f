package vptree

// quickSelect partitions arr in place so that arr[k] holds the value that
// would occupy that position under less, every element before it compares
// less-or-equal and every element after compares greater-or-equal — the
// same postcondition as std::nth_element, which the original build step
// uses to partition candidates by distance to the chosen vantage point.
func quickSelect(arr []int, k int, less func(a, b int) bool) {
	lo, hi := 0, len(arr)-1
	for lo < hi {
		p := partition(arr, lo, hi, less)
		switch {
		case k == p:
			return
		case k < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition(arr []int, lo, hi int, less func(a, b int) bool) int {
	mid := lo + (hi-lo)/2
	pivot := arr[mid]
	arr[mid], arr[hi] = arr[hi], arr[mid]
	store := lo
	for i := lo; i < hi; i++ {
		if less(arr[i], pivot) {
			arr[i], arr[store] = arr[store], arr[i]
			store++
		}
	}
	arr[store], arr[hi] = arr[hi], arr[store]
	return store
}
