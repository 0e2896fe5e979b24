//go:build !zmk_pointing

package simhost

// NotifyMouseReport panics outside builds with pointing support; see
// mouse.go.
func (h *Host) NotifyMouseReport(buttons uint32, dx, dy, scrollX, scrollY int32) {
	panic("simhost: NotifyMouseReport requires the zmk_pointing build tag")
}
