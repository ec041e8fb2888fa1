package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/faktura/internal/application/service"
	"github.com/garyjia/faktura/internal/container"
	"github.com/garyjia/faktura/internal/format"
	"github.com/garyjia/faktura/internal/invoice"
	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/pkg/utils"
)

func (a *app) numberCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "number",
		Short: "Document numbering",
	}

	var docType string
	next := &cobra.Command{
		Use:   "next",
		Short: "Print the next document number for the current month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				number, err := c.Services().Invoice.NextNumber(ctx, models.DocumentType(docType))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), number)
				return nil
			})
		},
	}
	next.Flags().StringVar(&docType, "type", string(models.DocumentTypeVAT), "document type: vat or proforma")

	cmd.AddCommand(next)
	return cmd
}

func (a *app) invoicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoices",
		Aliases: []string{"inv"},
		Short:   "List, export and import stored invoices",
	}

	cmd.AddCommand(
		a.invoicesListCommand(),
		a.invoicesExportCommand(),
		a.invoicesImportCommand(),
		a.invoicesXMLCommand(),
		a.invoicesRegisterCommand(),
	)
	return cmd
}

func (a *app) invoicesListCommand() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				invoices, err := c.Services().Invoice.List(ctx, service.Filter(filter))
				if err != nil {
					return err
				}
				return printInvoices(cmd.OutOrStdout(), invoices)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "type", string(service.FilterAll), "filter: all, vat or proforma")
	return cmd
}

func printInvoices(w io.Writer, invoices []models.Invoice) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMER\tTYP\tDATA\tNABYWCA\tNIP\tBRUTTO\tKSEF")
	for i := range invoices {
		inv := &invoices[i]
		totals := invoice.CalculateTotals(inv)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.ID,
			inv.InvoiceNumber,
			inv.DocumentType,
			inv.IssueDate,
			inv.Buyer.Name,
			utils.FormatNIP(inv.Buyer.NIP),
			format.Decimal2(totals.TotalGross),
			inv.SubmissionStatus(),
		)
	}
	return tw.Flush()
}

func (a *app) invoicesExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the invoice history as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				data, err := c.Services().Invoice.ExportJSON(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), output, data)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) invoicesImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the invoice history with a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}

			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				n, err := c.Services().Invoice.ImportJSON(ctx, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d invoices\n", n)
				return nil
			})
		},
	}
}

func (a *app) invoicesXMLCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "xml <id>",
		Short: "Render a VAT invoice as FA(2) XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				doc, err := c.Services().Invoice.ExportXML(ctx, args[0])
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), output, doc.Content)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) invoicesRegisterCommand() *cobra.Command {
	var (
		output string
		filter string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Write the invoice register as an xlsx spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				invoices, err := c.Services().Invoice.List(ctx, service.Filter(filter))
				if err != nil {
					return err
				}

				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create register file: %w", err)
				}
				if err := c.Register().Write(f, invoices); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("failed to close register file: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d invoices to %s\n", len(invoices), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output xlsx file")
	cmd.Flags().StringVar(&filter, "type", string(service.FilterAll), "filter: all, vat or proforma")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
