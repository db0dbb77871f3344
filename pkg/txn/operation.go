package txn

// Kind distinguishes the three operation shapes a transaction can queue.
type Kind string

const (
	KindInstall Kind = "install"
	KindRemove  Kind = "remove"
	KindUpgrade Kind = "upgrade"
)

// Operation is one step of a transaction's ordered sequence. Order is
// significant: operations execute in queued order, and an Upgrade
// decomposes into a remove-then-install pair executed in place rather than
// being split across the sequence.
type Operation struct {
	Kind Kind

	// PackageName is the name to remove (Kind == KindRemove) or the name
	// being upgraded (Kind == KindUpgrade; the new archive must carry the
	// same name).
	PackageName string

	// ArchivePath is the filesystem path to the already-downloaded,
	// already-verified archive file (Kind == KindInstall or KindUpgrade).
	ArchivePath string

	// TrustLevel is the trust level the signature verification step
	// already resolved for this archive (e.g. "full", "marginal", or
	// "unknown" when allow_untrusted let an unverified package through).
	// Stamped onto the resulting installed record.
	TrustLevel string
}
