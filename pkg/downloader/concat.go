package downloader

// setConcatenationAttribute marks a finalized multi-part directory as a
// concatenation file for hosts that understand the convention (the
// original Switch homebrew target calls fsdevSetConcatenationFileAttribute
// here). No host filesystem API for this exists on the platforms this
// module targets, so it is a documented no-op — the FFI seam (§9 (b)) is
// explicitly "no-op-safe: absence downgrades behavior gracefully".
func setConcatenationAttribute(path string) {}
