package emailtest

import "fmt"

// MailPlain is a minimal single-part message.
const MailPlain = "MIME-Version: 1.0\r\n" +
	"From: Sender <sender@example.com>\r\n" +
	"To: rcpt@example.com\r\n" +
	"Subject: Test Subject\r\n" +
	"Date: Tue, 10 Feb 2026 08:00:00 +0000\r\n" +
	"Message-Id: <test-1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hello, World!"

// MailMultipart is a multipart/mixed message with text and one attachment.
const MailMultipart = "MIME-Version: 1.0\r\n" +
	"From: sender@example.com\r\n" +
	"To: rcpt@example.com\r\n" +
	"Cc: Copy One <cc1@example.com>, cc2@example.com\r\n" +
	"Subject: Multipart Test\r\n" +
	"Date: Tue, 10 Feb 2026 08:00:00 +0000\r\n" +
	"Message-Id: <test-multi@example.com>\r\n" +
	"In-Reply-To: <test-1@example.com>\r\n" +
	"Content-Type: multipart/mixed; boundary=\"TESTBOUNDARY\"\r\n" +
	"\r\n" +
	"--TESTBOUNDARY\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain text body\r\n" +
	"--TESTBOUNDARY\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment; filename=\"test.bin\"\r\n" +
	"\r\n" +
	"BINARYDATA\r\n" +
	"--TESTBOUNDARY--\r\n"

// MailNested is a multipart/mixed containing a multipart/alternative.
const MailNested = "MIME-Version: 1.0\r\n" +
	"From: sender@example.com\r\n" +
	"To: rcpt@example.com\r\n" +
	"Subject: Nested Multipart\r\n" +
	"Date: Tue, 10 Feb 2026 08:00:00 +0000\r\n" +
	"Message-Id: <test-nested@example.com>\r\n" +
	"Content-Type: multipart/mixed; boundary=\"OUTER\"\r\n" +
	"\r\n" +
	"--OUTER\r\n" +
	"Content-Type: multipart/alternative; boundary=\"INNER\"\r\n" +
	"\r\n" +
	"--INNER\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain version\r\n" +
	"--INNER\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>HTML version</p>\r\n" +
	"--INNER--\r\n" +
	"--OUTER\r\n" +
	"Content-Type: image/png\r\n" +
	"Content-Disposition: attachment; filename=\"image.png\"\r\n" +
	"\r\n" +
	"PNG-DATA\r\n" +
	"--OUTER--\r\n"

// MailHTMLOnly has no text/plain part.
const MailHTMLOnly = "MIME-Version: 1.0\r\n" +
	"From: news@example.com\r\n" +
	"To: rcpt@example.com\r\n" +
	"Subject: Newsletter\r\n" +
	"Date: 3 Mar 2025 12:30:00 +0100\r\n" +
	"Message-Id: <news/42@example.com>\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><h1>Weekly</h1><p>Read <b>this</b>.</p></body></html>"

// MailLatin1 carries an undeclared ISO-8859-1 body and header.
const MailLatin1 = "MIME-Version: 1.0\r\n" +
	"From: sender@example.com\r\n" +
	"To: rcpt@example.com\r\n" +
	"Subject: Gr\xfc\xdfe\r\n" +
	"Date: Wed, 1 Jan 2020 10:00:00 +0000\r\n" +
	"Message-Id: <latin1@example.com>\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Transfer-Encoding: 8bit\r\n" +
	"\r\n" +
	"Sch\xf6ne Gr\xfc\xdfe\r\n"

// MailNoID has neither a Message-Id nor a parsable date.
const MailNoID = "From: sender@example.com\r\n" +
	"To: rcpt@example.com\r\n" +
	"Subject: anonymous\r\n" +
	"Date: someday\r\n" +
	"\r\n" +
	"no identity\r\n"

// Message returns a small unique text message.
func Message(n int, subject string) string {
	return fmt.Sprintf("From: sender@example.com\r\n"+
		"To: rcpt@example.com\r\n"+
		"Subject: %s\r\n"+
		"Date: Mon, %d Jan 2024 09:00:00 +0000\r\n"+
		"Message-Id: <msg-%d@example.com>\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"\r\n"+
		"Body of message %d\r\n", subject, n%28+1, n, n)
}
