package reporting

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{"Name", "Role", "Truck", "Date", "Sign In", "Sign Out", "Total Hours", "Auto Sign Out"}

// WriteCSV writes rows in the admin export layout with times shown in loc.
func WriteCSV(w io.Writer, rows []Row, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		in := r.SignInTime.In(loc)
		record := []string{
			orNA(r.UserName),
			orNA(string(r.UserRole)),
			r.TruckID,
			in.Format(dateLayout),
			in.Format("15:04"),
			"",
			"",
			"No",
		}
		if r.SignOutTime != nil {
			record[5] = r.SignOutTime.In(loc).Format("15:04")
		}
		if r.TotalHours != nil {
			record[6] = strconv.FormatFloat(*r.TotalHours, 'f', 2, 64)
		}
		if r.IsAutoSignOut {
			record[7] = "Yes"
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename is the download name for an export generated at now.
func Filename(now time.Time) string {
	return "time-attendance-report-" + now.Format(dateLayout) + ".csv"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
