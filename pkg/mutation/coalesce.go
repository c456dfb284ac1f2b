package mutation

// Coalesce merges duplicate text records within one batch.
//
// Records without a target are dropped and counted. For text records the
// first record per target is kept. If its old value is empty and a later
// duplicate carries one, the old value is backfilled. Its new value follows
// the latest duplicate, which holds the node's current data. Other records
// pass through unchanged and in their original order. The input is not
// modified.
func Coalesce(batch []Record) (out []Record, dropped int) {
	out = make([]Record, 0, len(batch))
	// Index into out of the kept text record per target. Targets that are
	// not comparable are never merged.
	var firstText []int

	for _, r := range batch {
		if !r.Valid() {
			dropped++
			continue
		}

		if r.Kind == KindText {
			if i, ok := findText(out, firstText, r.Target); ok {
				if isEmpty(out[i].OldValue) && !isEmpty(r.OldValue) {
					out[i].OldValue = r.OldValue
				}
				if r.NewValue != nil {
					out[i].NewValue = r.NewValue
				}
				continue
			}
			firstText = append(firstText, len(out))
		}

		out = append(out, r)
	}

	return out, dropped
}

func findText(out []Record, firstText []int, target any) (int, bool) {
	for _, i := range firstText {
		if sameTarget(out[i].Target, target) {
			return i, true
		}
	}
	return 0, false
}
