package models

// All lists every persisted model, in dependency order, for migrations
func All() []any {
	return []any{
		&Quote{},
		&Part{},
		&SubPart{},
		&LineItem{},
		&Site{},
		&SiteSupplementaryLine{},
		&Amendment{},
		&AmendmentInvoiceLine{},
		&ThirdPartyInvoice{},
		&Statement{},
		&StatementLineItem{},
		&StatementAmendmentLine{},
		&StatementSupplementaryLine{},
		&AuditLog{},
	}
}
