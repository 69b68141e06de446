package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
)

// provisioning workbook sheets; the first row of each sheet holds the column names
const (
	sheetOrganizations = "organizations" // code | name | phone | email
	sheetLocations     = "locations"     // organization | name
	sheetClasses       = "classes"       // organization | location | name | day | start | end | capacity
)

type provisionReport struct {
	organizations, locations, classes, skipped int
}

func (cli *commandLine) addOrgCommand() *cobra.Command {
	var no organization.NewOrganization
	cmd := &cobra.Command{
		Use:   "addorg CODE NAME",
		Short: "Create an organization",
		Args:  requireArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			no.Code, no.Name = args[0], args[1]
			org, err := cli.orgSvc.CreateOrganization(cmd.Context(), no)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "organization %q created: %s\n", org.Code, org.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&no.Phone, "phone", "", "contact phone number")
	cmd.Flags().StringVar(&no.Email, "email", "", "contact email")
	return cmd
}

func (cli *commandLine) provisionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "provision FILE.xlsx",
		Short: "Create the organizations, locations and classes listed in a workbook",
		Long: "Create the organizations, locations and classes listed in the " +
			sheetOrganizations + ", " + sheetLocations + " and " + sheetClasses + " sheets of a workbook.\n" +
			"Existing organizations, locations and classes are left untouched.",
		Args: requireArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := cli.provision(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "created %d organization(s), %d location(s), %d class(es); %d row(s) already provisioned\n",
				report.organizations, report.locations, report.classes, report.skipped)
			return nil
		},
	}
}

func (cli *commandLine) provision(ctx context.Context, path string) (provisionReport, error) {
	var report provisionReport

	f, err := excelize.OpenFile(path)
	if err != nil {
		return report, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	orgs := make(map[string]organization.Organization) // by code

	rows, err := readSheet(f, sheetOrganizations)
	if err != nil {
		return report, err
	}
	for i, row := range rows {
		org, created, err := cli.getOrCreateOrganization(ctx, organization.NewOrganization{
			Code:  row["code"],
			Name:  row["name"],
			Phone: row["phone"],
			Email: row["email"],
		})
		if err != nil {
			return report, rowError(err, sheetOrganizations, i)
		}
		orgs[org.Code] = org
		report.count(created, &report.organizations)
	}

	organizationOf := func(code string) (organization.Organization, error) {
		code = core.CleanString(code)
		if org, ok := orgs[code]; ok {
			return org, nil
		}
		org, err := cli.orgSvc.ResolveByCode(ctx, code)
		if err != nil {
			return org, err
		}
		orgs[code] = org
		return org, nil
	}

	rows, err = readSheet(f, sheetLocations)
	if err != nil {
		return report, err
	}
	for i, row := range rows {
		org, err := organizationOf(row["organization"])
		if err != nil {
			return report, rowError(err, sheetLocations, i)
		}
		_, created, err := cli.getOrCreateLocation(ctx, org, row["name"])
		if err != nil {
			return report, rowError(err, sheetLocations, i)
		}
		report.count(created, &report.locations)
	}

	rows, err = readSheet(f, sheetClasses)
	if err != nil {
		return report, err
	}
	for i, row := range rows {
		org, err := organizationOf(row["organization"])
		if err != nil {
			return report, rowError(err, sheetClasses, i)
		}
		loc, locCreated, err := cli.getOrCreateLocation(ctx, org, row["location"])
		if err != nil {
			return report, rowError(err, sheetClasses, i)
		}
		if locCreated {
			report.locations++
		}
		nc, err := parseClassRow(loc.ID, row)
		if err != nil {
			return report, rowError(err, sheetClasses, i)
		}
		created, err := cli.createClassIfMissing(ctx, org.ID, nc)
		if err != nil {
			return report, rowError(err, sheetClasses, i)
		}
		report.count(created, &report.classes)
	}

	return report, nil
}

func (r *provisionReport) count(created bool, counter *int) {
	if created {
		*counter++
	} else {
		r.skipped++
	}
}

func (cli *commandLine) getOrCreateOrganization(ctx context.Context, no organization.NewOrganization) (organization.Organization, bool, error) {
	org, err := cli.orgSvc.ResolveByCode(ctx, core.CleanString(no.Code))
	if err == nil {
		return org, false, nil
	}
	if !core.IsNotFound(err) {
		return org, false, err
	}
	org, err = cli.orgSvc.CreateOrganization(ctx, no)
	return org, err == nil, err
}

func (cli *commandLine) getOrCreateLocation(ctx context.Context, org organization.Organization, name string) (organization.Location, bool, error) {
	loc, err := cli.orgSvc.FindLocation(ctx, org.ID, name)
	if err == nil {
		return loc, false, nil
	}
	if !core.IsNotFound(err) {
		return loc, false, err
	}
	loc, err = cli.orgSvc.CreateLocation(ctx, organization.NewLocation{OrganizationID: org.ID, Name: name})
	return loc, err == nil, err
}

// createClassIfMissing creates the class unless the location already has one with the same name and schedule.
func (cli *commandLine) createClassIfMissing(ctx context.Context, orgID string, nc organization.NewClassSession) (bool, error) {
	if err := nc.Clean(); err != nil {
		return false, err
	}
	classes, err := cli.orgSvc.ListClasses(ctx, orgID)
	if err != nil {
		return false, err
	}
	for _, cs := range classes {
		if cs.Location.ID == nc.LocationID && cs.Name == nc.Name && cs.DayOfWeek == nc.DayOfWeek && cs.StartTime == nc.StartTime {
			return false, nil
		}
	}
	if _, err = cli.orgSvc.CreateClassSession(ctx, nc); err != nil {
		return false, err
	}
	return true, nil
}

func parseClassRow(locationID string, row map[string]string) (organization.NewClassSession, error) {
	nc := organization.NewClassSession{
		LocationID: locationID,
		Name:       row["name"],
		StartTime:  row["start"],
		EndTime:    row["end"],
	}

	day, err := parseWeekday(row["day"])
	if err != nil {
		return nc, err
	}
	nc.DayOfWeek = day

	if c := strings.TrimSpace(row["capacity"]); c != "" {
		if nc.Capacity, err = strconv.Atoi(c); err != nil {
			return nc, core.NewValidationError(err, core.FieldError{Field: "capacity", Error: "must be a number"})
		}
	}
	return nc, nil
}

// parseWeekday accepts a day number (0 is Sunday) or an english day name, full or abbreviated.
func parseWeekday(s string) (int, error) {
	s = strings.TrimSpace(s)
	if d, err := strconv.Atoi(s); err == nil {
		return d, nil
	}
	for i, name := range organization.Weekdays {
		if len(s) >= 3 && strings.HasPrefix(strings.ToLower(name), strings.ToLower(s)) {
			return i, nil
		}
	}
	return 0, core.NewValidationError(nil, core.FieldError{Field: "day", Error: fmt.Sprintf("unknown day %q", s)})
}

// readSheet returns the rows of the sheet as maps keyed by the lower-cased column names.
// Blank rows are skipped; a missing sheet has no rows.
func readSheet(f *excelize.File, sheet string) ([]map[string]string, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %s", sheet)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		blank := true
		for i, val := range row {
			if i >= len(header) {
				break
			}
			val = strings.TrimSpace(val)
			if val != "" {
				blank = false
			}
			rec[header[i]] = val
		}
		if !blank {
			records = append(records, rec)
		}
	}
	return records, nil
}

// rowError locates err in the workbook; i is the index of the data row.
func rowError(err error, sheet string, i int) error {
	return errors.Wrapf(err, "%s row %d", sheet, i+2)
}
