// Package printing contains the Printing bounded context.
// This context is responsible for turning business documents such as sales
// orders, invoices, collection receipts and delivery reports into PDF
// artifacts, and for tracking print sessions from invocation until the user
// completes or dismisses the print dialog.
package printing
