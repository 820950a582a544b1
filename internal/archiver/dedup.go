package archiver

// Deduplicate filters records in place and returns the surviving prefix of
// the slice.
//
// The first record with a given content hash wins; later ones are dropped.
// Then any record whose principal file is the sidecar of a survivor is
// dropped too, since enumeration also lists sidecars as bare files.
func Deduplicate(records []*FileRecord) []*FileRecord {
	seen := make(map[string]struct{}, len(records))
	sidecars := make(map[string]struct{})

	unique := records[:0]
	for _, r := range records {
		if _, dup := seen[r.hash]; dup {
			continue
		}
		seen[r.hash] = struct{}{}
		if r.sidecarPath != "" {
			sidecars[r.sidecarPath] = struct{}{}
		}
		unique = append(unique, r)
	}

	kept := unique[:0]
	for _, r := range unique {
		if _, isSidecar := sidecars[r.principalPath]; isSidecar {
			continue
		}
		kept = append(kept, r)
	}

	clear(records[len(kept):])
	return kept
}
