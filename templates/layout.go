package templates

// Every body is wrapped in the same frame; only the inner content differs.
const _LayoutHeader string = `
<html>
  <head>
    <meta name='viewport' content='width=device-width'/>
    <meta http-equiv='Content-Type' content='text/html; charset=UTF-8'/>
    <title>Dialiv</title>
  </head>

  <body style='background-color: #FFFFFF'>

    <div class='container' style='background-color:#F5F5F5; padding:20px; margin:0 auto; max-width:500px'>
      <div align='center' style='font-family: Helvetica Neue, Helvetica, sans-serif; font-weight:300; font-size: 14px; color:#000; line-height:1.4;'>
`

const _LayoutFooter string = `
        <p style='padding:15px 0 40px; margin:0;'>Sincerely,<br>The Weapp Team</p>
      </div>
      <div align='center' style='font-family: Helvetica Neue, Helvetica, sans-serif; font-weight:300; font-size: 12px; color:#444; line-height:1.8; padding:5px 0 0 0; margin:0;'>
        <a style='margin:0; display:block; text-decoration:none; color:#444' href='{{ .DashboardURL }}'>Weapp AB</a>
      </div>
    </div>

  </body>
</html>
`

func withLayout(content string) string {
	return _LayoutHeader + content + _LayoutFooter
}
