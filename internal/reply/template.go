package reply

// replyTemplate is the fixed HTML layout for every generated reply:
// summary section, suggested-reply section, one table row per invoice.
// Rendering is deterministic so the same extraction always produces a
// byte-identical body.
const replyTemplate = `<!DOCTYPE html>
<html>
<head>
  <style>
    table {
      width: 100%;
      font-family: Helvetica, Arial, sans-serif;
      border-collapse: collapse;
    }

    thead th {
      padding: 12px;
      text-align: left;
      background-color: #f2f2f2;
      color: #333333;
      font-weight: bold;
      border-bottom: 2px solid #dddddd;
    }

    tbody td {
      padding: 12px;
      border-bottom: 1px solid #dddddd;
    }

    tbody tr:nth-child(even) {
      background-color: #f9f9f9;
    }
  </style>
</head>
<body>
<h2>SUMMARY</h2>
<p>{{.Summary}}</p>

<h2>SUGGESTED REPLY</h2>
<p>{{.SuggestedReply}}</p>

<h2>INVOICES</h2>
<table>
<thead>
    <tr>
        <th>Invoice ID</th>
        <th>Value</th>
        <th>Status</th>
        <th>Payment promised</th>
        <th>Summary</th>
    </tr>
</thead>
<tbody>
{{range .Invoices}}    <tr>
        <td>{{.InvoiceID}}</td>
        <td>{{.TotalValue}} {{.Currency}}</td>
        <td>{{.Status}}</td>
        <td>{{.PromisedPaymentDate}}</td>
        <td>{{.Summary}}</td>
    </tr>
{{end}}</tbody>
</table>
<br />
<p>Bot Generated Reply Ends Here</p>
</body>
</html>
`
