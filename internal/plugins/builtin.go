package plugins

import (
	gmailreader "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/readers/gmail"
	jsonfilereader "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/readers/jsonfile"
	mboxreader "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/readers/mbox"
	smsbackupreader "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/readers/smsbackup"
	csvstore "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/stores/csv"
	jsonstore "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/stores/json"
	postgresstore "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/stores/postgres"
	sheetsstore "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/stores/sheets"
	sqlitestore "github.com/thisisarunc/ArunExpenseTracker/pkg/plugins/stores/sqlite"
)

// Builtin returns a registry holding every reader and store shipped with smsledger.
func Builtin() *Registry {
	r := NewRegistry()
	for _, p := range []ReaderPlugin{
		&gmailreader.Plugin{},
		&jsonfilereader.Plugin{},
		&mboxreader.Plugin{},
		&smsbackupreader.Plugin{},
	} {
		mustRegister(r.RegisterReader(p))
	}
	for _, p := range []StorePlugin{
		&csvstore.Plugin{},
		&jsonstore.Plugin{},
		&postgresstore.Plugin{},
		&sheetsstore.Plugin{},
		&sqlitestore.Plugin{},
	} {
		mustRegister(r.RegisterStore(p))
	}
	return r
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}
