// Package bugsnagevents downloads the events of one Bugsnag error and
// renders them as CSV, with columns chosen by a field-map file.
//
// Quick start:
//
//	x := bugsnagevents.New(bugsnagevents.WithToken(os.Getenv("BUGSNAG_AUTH_TOKEN")))
//	csv, err := x.Export(ctx, bugsnagevents.Request{
//	    ProjectID:  "515fb9337c1074f6fd000003",
//	    ErrorID:    "5d4b8ba1b2c3d4e5f6a7b8c9",
//	    CSVMapPath: "map.csv",
//	    Start:      time.Now().Add(-24 * time.Hour),
//	    End:        time.Now(),
//	})
//	var verr *bugsnagevents.ValidationError
//	if errors.As(err, &verr) {
//	    fmt.Println("missing:", verr.Attributes)
//	}
//
// A field map lists one column per row, header then path:
//
//	header,path
//	id,id
//	class,exceptions[0].error_class
//	received_at,received_at
//
// An Exporter holds no per-request state and is safe for concurrent use.
package bugsnagevents
