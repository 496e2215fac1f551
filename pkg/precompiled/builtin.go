package precompiled

// DefaultRegistry returns a Registry with every built-in precompiled
// contract bound to its fixed address.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SystemConfigAddress, "SystemConfig", SystemConfig)
	r.Register(TableManagerAddress, "TableManager", TableManager)
	r.Register(TableAddress, "Table", Table)
	r.Register(AccountAddress, "Account", Account)
	r.Register(AuthAddress, "Auth", Auth)
	r.Register(DagTransferAddress, "DagTransfer", DagTransfer)
	return r
}
