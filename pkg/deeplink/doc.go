// Package deeplink parses and routes the URLs a mobile platform hands to the
// app when the user follows a link.
//
// Two flows use deep links: password recovery (an emailed link whose fragment
// carries a short-lived session) and the browser-based OAuth redirect. Parse
// turns a URL into a tagged Link so that each delivered URL is handled by
// exactly one consumer:
//
//	link := deeplink.Parse("myapp://auth/reset#access_token=AAA&refresh_token=BBB&type=recovery")
//	// link.Kind == deeplink.KindRecovery
//	// link.Recovery.AccessToken == "AAA"
//
// Router owns the platform listener. Recovery links go to a RecoveryHandler;
// OAuth callbacks go to whichever flow registered itself with ExpectCallback.
//
//	router := deeplink.NewRouter(source, store)
//	if err := router.Start(ctx); err != nil {
//		return err
//	}
//	defer router.Stop()
package deeplink
