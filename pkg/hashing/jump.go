package hashing

// Jump maps key to a bucket in [0, buckets) using the jump consistent hash
// algorithm (Lamping & Veach). When the bucket count grows from n to n+1 only
// 1/(n+1) of the keys move. Returns -1 if buckets <= 0.
func Jump(key uint64, buckets int) int {
	if buckets <= 0 {
		return -1
	}

	var b, j int64 = -1, 0
	for j < int64(buckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}
	return int(b)
}
