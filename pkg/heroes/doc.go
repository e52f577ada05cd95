// Package heroes drives the heroes list and detail screens.
//
// ListController owns a pagination.State and turns UI signals (first load,
// pull-to-refresh, near-end-of-list, search text) into catalog fetches. It
// guarantees at most one refresh and one load-more in flight, filters the
// accumulated heroes by name after a quiet period, and publishes a ViewState
// snapshot after every change.
//
// Example usage:
//
//	lc, err := heroes.NewListController(client, heroes.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer lc.Close()
//
//	states, unsubscribe := lc.Subscribe()
//	defer unsubscribe()
//
//	<-lc.FetchFirstPage(ctx)
//	for vs := range states {
//		render(vs)
//	}
//
// DetailController loads the full record of one hero and hands navigation
// back to the Navigator.
package heroes
