package filing

const thirteenFDoc = `<SEC-DOCUMENT>0001067983-24-000012.txt : 20240515
<SEC-HEADER>0001067983-24-000012.hdr.sgml : 20240515
ACCESSION NUMBER:		0001067983-24-000012
CONFORMED SUBMISSION TYPE:	13F-HR
PUBLIC DOCUMENT COUNT:		2
CONFORMED PERIOD OF REPORT:	20240331
FILED AS OF DATE:		20240515
DATE AS OF CHANGE:		20240515

FILER:

	COMPANY DATA:	
		COMPANY CONFORMED NAME:			BERKSHIRE HATHAWAY INC
		CENTRAL INDEX KEY:			0001067983
		STANDARD INDUSTRIAL CLASSIFICATION:	FIRE, MARINE & CASUALTY INSURANCE [6331]
</SEC-HEADER>
<DOCUMENT>
<TYPE>INFORMATION TABLE
<SEQUENCE>2
<TEXT>
<XML>
<informationTable xmlns="http://www.sec.gov/edgar/document/thirteenf/informationtable">
  <infoTable>
    <nameOfIssuer>APPLE INC</nameOfIssuer>
    <titleOfClass>COM</titleOfClass>
    <cusip>037833100</cusip>
    <value>135364000</value>
    <shrsOrPrnAmt>
      <sshPrnamt>789368450</sshPrnamt>
      <sshPrnamtType>SH</sshPrnamtType>
    </shrsOrPrnAmt>
  </infoTable>
  <infoTable>
    <nameOfIssuer>CHEVRON CORP NEW</nameOfIssuer>
    <titleOfClass>COM</titleOfClass>
    <cusip>166764100</cusip>
    <value>18804000</value>
    <shrsOrPrnAmt>
      <sshPrnamt>119214281</sshPrnamt>
      <sshPrnamtType>SH</sshPrnamtType>
    </shrsOrPrnAmt>
  </infoTable>
</informationTable>
</XML>
</TEXT>
</DOCUMENT>
</SEC-DOCUMENT>
`

const prefixedDoc = `<SEC-HEADER>
ACCESSION NUMBER:		0000950123-23-000001
CONFORMED SUBMISSION TYPE:	13F-HR
CONFORMED PERIOD OF REPORT:	20231231
FILED AS OF DATE:		20240214
		COMPANY CONFORMED NAME:			PREFIXED ADVISORS LP
		CENTRAL INDEX KEY:			0000950123
</SEC-HEADER>
<XML>
<ns1:informationTable xmlns:ns1="http://www.sec.gov/edgar/document/thirteenf/informationtable">
  <ns1:infoTable>
    <ns1:nameOfIssuer>MICROSOFT CORP</ns1:nameOfIssuer>
    <ns1:cusip>594918104</ns1:cusip>
    <ns1:value>4200</ns1:value>
    <ns1:shrsOrPrnAmt><ns1:sshPrnamt>10</ns1:sshPrnamt></ns1:shrsOrPrnAmt>
  </ns1:infoTable>
</ns1:informationTable>
</XML>
`

const nportDoc = `<SEC-HEADER>
ACCESSION NUMBER:		0001752724-24-123456
CONFORMED SUBMISSION TYPE:	NPORT-P
CONFORMED PERIOD OF REPORT:	20240831
FILED AS OF DATE:		20241025
		COMPANY CONFORMED NAME:			THIRD AVENUE TRUST
		CENTRAL INDEX KEY:			0001099941
</SEC-HEADER>
<XML>
<edgarSubmission>
<formData>
<invstOrSecs>
  <invstOrSec>
    <name>Brookfield Corp</name>
    <lei>549300DYN0LAYXGMJM38</lei>
    <title>Brookfield Corp</title>
    <cusip>11271J107</cusip>
    <identifiers><isin value="CA11271J1075"/></identifiers>
    <balance>1250.5</balance>
    <units>NS</units>
    <valUSD>52021.25</valUSD>
  </invstOrSec>
  <invstOrSec>
    <name>Cash Sweep</name>
    <cusip>000000000</cusip>
    <balance>0</balance>
    <valUSD>0</valUSD>
  </invstOrSec>
  <invstOrSec>
    <lei>N/A</lei>
    <cusip>999999999</cusip>
    <balance>7</balance>
    <valUSD>70.5</valUSD>
  </invstOrSec>
</invstOrSecs>
</formData>
</edgarSubmission>
</XML>
`

const malformedDoc = `<XML>
<informationTable>
  <infoTable>
    <nameOfIssuer>GOOD CO</nameOfIssuer>
    <cusip>111111111</cusip>
    <value>100</value>
    <shrsOrPrnAmt><sshPrnamt>5</sshPrnamt></shrsOrPrnAmt>
  </infoTable>
  <infoTable>
    <nameOfIssuer>BAD CO</nameOfIssuer>
    <cusip>222222222</cusip>
    <value>1,000</value>
    <shrsOrPrnAmt><sshPrnamt>5</sshPrnamt></shrsOrPrnAmt>
  </infoTable>
  <infoTable>
    <nameOfIssuer>PARTIAL CO</nameOfIssuer>
  </infoTable>
</informationTable>
</XML>
`
