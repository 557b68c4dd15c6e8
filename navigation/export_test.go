package navigation

// OpRunning exposes the driver's operation state to the external test package.
func OpRunning(d *Driver) bool {
	return d.opMgr.OpRunning()
}
