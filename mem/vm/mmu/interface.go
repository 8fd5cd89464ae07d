package mmu

// A TranslationCache keeps a small number of recently used VPN to frame
// mappings in front of the page table.
type TranslationCache interface {
	Lookup(vpn uint32) (frame uint32, found bool)
	Insert(vpn uint32, frame uint32)
}
