package core

// NewDefaultRulesEngine returns an engine loaded with the lifecycle rules
// every store should enforce at commit time. The rules re-check what the
// service already validates, so writes reaching the store through any other
// path are held to the same invariants.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(requestLifecycleRule{})
	engine.Register(approvedItemsRule{})
	engine.Register(fulfillmentLifecycleRule{})
	engine.Register(deliveredCompletenessRule{})
	return engine
}
